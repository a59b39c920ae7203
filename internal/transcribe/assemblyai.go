package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/config"
)

// AssemblyAI transcribes files through the AssemblyAI v2 REST API.
type AssemblyAI struct {
	apiKey       string
	language     string
	baseURL      string
	pollInterval time.Duration
	client       *http.Client
	log          zerolog.Logger
}

// NewAssemblyAI creates an AssemblyAI provider.
func NewAssemblyAI(cfg config.AssemblyAIConfig, log zerolog.Logger) *AssemblyAI {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 3 * time.Second
	}
	return &AssemblyAI{
		apiKey:       cfg.APIKey,
		language:     cfg.Language,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: poll,
		client:       newHTTPClient(),
		log:          log.With().Str("provider", config.ProviderAssemblyAI).Logger(),
	}
}

func (a *AssemblyAI) Name() string { return config.ProviderAssemblyAI }

type assemblyUpload struct {
	UploadURL string `json:"upload_url"`
}

type assemblyRequest struct {
	AudioURL      string `json:"audio_url"`
	LanguageCode  string `json:"language_code,omitempty"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type assemblyUtterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type assemblyTranscript struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	Text       string              `json:"text"`
	Error      string              `json:"error"`
	Utterances []assemblyUtterance `json:"utterances"`
}

// Transcribe uploads the file, creates a transcript job and polls it until
// it completes or fails.
func (a *AssemblyAI) Transcribe(ctx context.Context, path string) (res Result) {
	res = Result{Provider: a.Name(), File: path, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &ProviderError{Provider: a.Name(), Kind: KindRemote, Message: fmt.Sprint(r)}
		}
		res.FinishedAt = time.Now()
	}()

	uploadURL, perr := a.upload(ctx, path)
	if perr != nil {
		res.Err = perr
		return res
	}
	a.log.Debug().Str("file", path).Msg("upload complete")

	id, perr := a.create(ctx, uploadURL)
	if perr != nil {
		res.Err = perr
		return res
	}
	a.log.Debug().Str("transcript_id", id).Msg("transcript queued")

	tr, perr := a.poll(ctx, id)
	if perr != nil {
		res.Err = perr
		return res
	}

	res.Lines, res.Raw = normalizeAssemblyAI(tr)
	return res
}

func (a *AssemblyAI) upload(ctx context.Context, path string) (string, *ProviderError) {
	f, size, perr := openAudio(a.Name(), path)
	if perr != nil {
		return "", perr
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/upload", f)
	if err != nil {
		return "", &ProviderError{Provider: a.Name(), Kind: KindNetwork, Message: err.Error()}
	}
	req.ContentLength = size
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, perr := do(a.client, a.Name(), req)
	if perr != nil {
		return "", perr
	}

	var up assemblyUpload
	if err := json.Unmarshal(resp.body, &up); err != nil || up.UploadURL == "" {
		return "", a.decodeError("upload", err)
	}
	return up.UploadURL, nil
}

func (a *AssemblyAI) create(ctx context.Context, audioURL string) (string, *ProviderError) {
	body, err := json.Marshal(assemblyRequest{
		AudioURL:      audioURL,
		LanguageCode:  a.language,
		SpeakerLabels: true,
	})
	if err != nil {
		return "", &ProviderError{Provider: a.Name(), Kind: KindDecode, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: a.Name(), Kind: KindNetwork, Message: err.Error()}
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, perr := do(a.client, a.Name(), req)
	if perr != nil {
		return "", perr
	}

	var tr assemblyTranscript
	if err := json.Unmarshal(resp.body, &tr); err != nil || tr.ID == "" {
		return "", a.decodeError("create", err)
	}
	return tr.ID, nil
}

func (a *AssemblyAI) poll(ctx context.Context, id string) (*assemblyTranscript, *ProviderError) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript/"+id, nil)
		if err != nil {
			return nil, &ProviderError{Provider: a.Name(), Kind: KindNetwork, Message: err.Error()}
		}
		req.Header.Set("Authorization", a.apiKey)

		resp, perr := do(a.client, a.Name(), req)
		if perr != nil {
			return nil, perr
		}

		var tr assemblyTranscript
		if err := json.Unmarshal(resp.body, &tr); err != nil {
			return nil, a.decodeError("poll", err)
		}

		switch tr.Status {
		case "completed":
			return &tr, nil
		case "error":
			msg := tr.Error
			if msg == "" {
				msg = "transcription failed"
			}
			return nil, &ProviderError{Provider: a.Name(), Kind: KindRemote, Message: msg}
		}

		a.log.Debug().Str("transcript_id", id).Str("status", tr.Status).Msg("waiting for transcript")
		select {
		case <-ctx.Done():
			return nil, &ProviderError{Provider: a.Name(), Kind: KindNetwork, Message: describeTransportError(ctx.Err())}
		case <-ticker.C:
		}
	}
}

func (a *AssemblyAI) decodeError(step string, err error) *ProviderError {
	msg := fmt.Sprintf("%s: unexpected response", step)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", step, err)
	}
	return &ProviderError{Provider: a.Name(), Kind: KindDecode, Message: msg}
}

// normalizeAssemblyAI turns utterances into speaker lines. Without
// utterances the plain text is returned unchanged as raw.
func normalizeAssemblyAI(tr *assemblyTranscript) (lines []string, raw string) {
	for _, u := range tr.Utterances {
		lines = append(lines, fmt.Sprintf("Speaker %s: %s", u.Speaker, u.Text))
	}
	return lines, tr.Text
}
