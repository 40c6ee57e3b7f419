package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var client = &http.Client{Timeout: 2 * time.Second}

// FetchStatus reads /v1/status from the daemon listening on addr.
func FetchStatus(addr string) (ServiceStatus, error) {
	var st ServiceStatus
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short local request
	if err != nil {
		return st, fmt.Errorf("unreachable (%w)", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed response (%w)", err)
	}
	return st, nil
}

// Wake asks the daemon on addr for an immediate sync pass.
func Wake(addr string) error {
	resp, err := client.Post("http://"+addr+"/v1/sync", "", nil) //nolint:noctx // short local request
	if err != nil {
		return fmt.Errorf("daemon is running but unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon refused sync request: HTTP %d", resp.StatusCode)
	}
	return nil
}

// RemoteReporter reports the delivery state of a daemon in another
// process, so a dashboard that only observes still shows connectivity and
// delivery history.
type RemoteReporter struct {
	Addr string
}

// Stats implements Reporter. An unreachable daemon reads as offline.
func (r RemoteReporter) Stats() WorkerStats {
	st, err := FetchStatus(r.Addr)
	if err != nil {
		return WorkerStats{LastError: "daemon " + err.Error()}
	}
	return WorkerStats{
		Online:    st.Sync.Online,
		LastSync:  st.Sync.LastSync,
		LastError: st.Sync.LastError,
		Delivered: st.Sync.Delivered,
	}
}
