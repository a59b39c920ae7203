package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/config"
)

// Deepgram transcribes files with a single pre-recorded request to the
// Deepgram v1 listen endpoint.
type Deepgram struct {
	apiKey   string
	language string
	model    string
	baseURL  string
	client   *http.Client
	log      zerolog.Logger
}

// NewDeepgram creates a Deepgram provider.
func NewDeepgram(cfg config.DeepgramConfig, log zerolog.Logger) *Deepgram {
	model := cfg.Model
	if model == "" {
		model = "nova-3"
	}
	return &Deepgram{
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		model:    model,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   newHTTPClient(),
		log:      log.With().Str("provider", config.ProviderDeepgram).Logger(),
	}
}

func (d *Deepgram) Name() string { return config.ProviderDeepgram }

type deepgramSentence struct {
	Text string `json:"text"`
}

type deepgramParagraph struct {
	Speaker   int                `json:"speaker"`
	Sentences []deepgramSentence `json:"sentences"`
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Paragraphs *struct {
					Paragraphs []deepgramParagraph `json:"paragraphs"`
				} `json:"paragraphs"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) listenURL() string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	q.Set("diarize", "true")
	q.Set("paragraphs", "true")
	if d.language != "" {
		q.Set("language", d.language)
	}
	return d.baseURL + "/v1/listen?" + q.Encode()
}

// Transcribe posts the file bytes and normalizes the paragraphs in the
// response.
func (d *Deepgram) Transcribe(ctx context.Context, path string) (res Result) {
	res = Result{Provider: d.Name(), File: path, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Err = &ProviderError{Provider: d.Name(), Kind: KindRemote, Message: fmt.Sprint(r)}
		}
		res.FinishedAt = time.Now()
	}()

	f, size, perr := openAudio(d.Name(), path)
	if perr != nil {
		res.Err = perr
		return res
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.listenURL(), f)
	if err != nil {
		res.Err = &ProviderError{Provider: d.Name(), Kind: KindNetwork, Message: err.Error()}
		return res
	}
	req.ContentLength = size
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType(path))

	resp, perr := do(d.client, d.Name(), req)
	if perr != nil {
		res.Err = perr
		return res
	}
	d.log.Debug().Str("file", path).Int("bytes", len(resp.body)).Msg("response received")

	var dg deepgramResponse
	if err := json.Unmarshal(resp.body, &dg); err != nil {
		res.Err = &ProviderError{Provider: d.Name(), Kind: KindDecode, Message: err.Error()}
		return res
	}

	res.Lines, res.Raw = normalizeDeepgram(&dg)
	return res
}

// normalizeDeepgram turns the first alternative's paragraphs into speaker
// lines, joining each paragraph's sentences with a space. Without
// paragraphs the plain transcript is returned unchanged as raw.
func normalizeDeepgram(resp *deepgramResponse) (lines []string, raw string) {
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, ""
	}
	alt := resp.Results.Channels[0].Alternatives[0]
	if alt.Paragraphs != nil {
		for _, p := range alt.Paragraphs.Paragraphs {
			texts := make([]string, 0, len(p.Sentences))
			for _, s := range p.Sentences {
				texts = append(texts, s.Text)
			}
			lines = append(lines, fmt.Sprintf("Speaker %d: %s", p.Speaker, strings.Join(texts, " ")))
		}
	}
	return lines, alt.Transcript
}
