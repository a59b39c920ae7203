package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	requestTimeout = 10 * time.Minute
	dialTimeout    = 30 * time.Second
	// maxErrorBody caps how much of an error response is kept in messages.
	maxErrorBody = 512
)

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
			TLSHandshakeTimeout: dialTimeout,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

// do sends req and reads the whole body. Transport failures and non-2xx
// statuses come back as a *ProviderError of the matching kind.
func do(client *http.Client, provider string, req *http.Request) (*response, *ProviderError) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Kind: KindNetwork, Message: describeTransportError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Kind: KindNetwork, Message: fmt.Sprintf("reading response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ProviderError{Provider: provider, Kind: KindAuth, Message: statusMessage(resp.StatusCode, body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ProviderError{Provider: provider, Kind: KindRemote, Message: statusMessage(resp.StatusCode, body)}
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func describeTransportError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}

func statusMessage(status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	return fmt.Sprintf("HTTP %d: %s", status, msg)
}

// openAudio opens path for streaming upload.
func openAudio(provider, path string) (*os.File, int64, *ProviderError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &ProviderError{Provider: provider, Kind: KindIO, Message: err.Error()}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, &ProviderError{Provider: provider, Kind: KindIO, Message: err.Error()}
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, &ProviderError{Provider: provider, Kind: KindIO, Message: path + " is a directory"}
	}
	return f, info.Size(), nil
}

// contentType maps a supported audio extension to its MIME type.
func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
