package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// TalkCreate registers a new talk.
func (c *Client) TalkCreate(req TalkCreateRequest) (*TalkCreateResponse, error) {
	var resp TalkCreateResponse
	if err := c.client.Call("Redact.TalkCreate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TalkList returns all talks with review progress.
func (c *Client) TalkList() (*TalkListResponse, error) {
	var resp TalkListResponse
	if err := c.client.Call("Redact.TalkList", TalkListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TalkShow fetches one talk by id or slug.
func (c *Client) TalkShow(req TalkShowRequest) (*TalkShowResponse, error) {
	var resp TalkShowResponse
	if err := c.client.Call("Redact.TalkShow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TalkResume reactivates a halted talk.
func (c *Client) TalkResume(req TalkResumeRequest) (*TalkResumeResponse, error) {
	var resp TalkResumeResponse
	if err := c.client.Call("Redact.TalkResume", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DocumentAdd uploads a transcript.
func (c *Client) DocumentAdd(req DocumentAddRequest) (*DocumentAddResponse, error) {
	var resp DocumentAddResponse
	if err := c.client.Call("Redact.DocumentAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan triggers a synchronous scan pass.
func (c *Client) Scan() (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Redact.Scan", ScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry requeues failed documents.
func (c *Client) Retry(req RetryRequest) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.client.Call("Redact.Retry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PendingFindings lists undecided entities for a talk.
func (c *Client) PendingFindings(req PendingFindingsRequest) (*PendingFindingsResponse, error) {
	var resp PendingFindingsResponse
	if err := c.client.Call("Redact.PendingFindings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decide records one review decision.
func (c *Client) Decide(req DecideRequest) (*DecideResponse, error) {
	var resp DecideResponse
	if err := c.client.Call("Redact.Decide", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DecisionHistory fetches the audit trail of one entity.
func (c *Client) DecisionHistory(req DecisionHistoryRequest) (*DecisionHistoryResponse, error) {
	var resp DecisionHistoryResponse
	if err := c.client.Call("Redact.DecisionHistory", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sanitize rewrites every document of a talk.
func (c *Client) Sanitize(req SanitizeRequest) (*SanitizeResponse, error) {
	var resp SanitizeResponse
	if err := c.client.Call("Redact.Sanitize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Redact.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Redact.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Redact.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
