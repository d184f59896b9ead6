package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Result is one program run. An empty Stderr is a passing run.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

func (r Result) Passed() bool { return r.Stderr == "" }

// Failed turns an execution error into a failing result so callers can relay it.
func Failed(err error) Result {
	return Result{Stderr: "code execution failed: " + err.Error(), ExitCode: -1}
}

type languageSpec struct {
	name     string
	fileName string
}

// languages maps our language ids onto Piston runtimes.
var languages = map[string]languageSpec{
	"python":     {name: "python", fileName: "main.py"},
	"java":       {name: "java", fileName: "Main.java"},
	"cpp":        {name: "c++", fileName: "main.cpp"},
	"javascript": {name: "javascript", fileName: "main.js"},
	"typescript": {name: "typescript", fileName: "main.ts"},
	"go":         {name: "go", fileName: "main.go"},
}

type pistonFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin,omitempty"`
}

type pistonStage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type pistonResponse struct {
	Run     pistonStage  `json:"run"`
	Compile *pistonStage `json:"compile,omitempty"`
	Message string       `json:"message,omitempty"`
}

// PistonClient runs code through a Piston server. Calls are paced by a limiter so the
// upstream sees at most one request per MinInterval.
type PistonClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewPistonClient(baseURL string, minInterval time.Duration, logger *zap.Logger) *PistonClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minInterval <= 0 {
		minInterval = 250 * time.Millisecond
	}
	return &PistonClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		logger:  logger,
	}
}

// Run executes source. A non-nil error means the service could not run it at all.
func (c *PistonClient) Run(ctx context.Context, language, version, source string) (Result, error) {
	spec, ok := languages[strings.ToLower(language)]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	if version == "" {
		version = "*"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("waiting for execution slot: %w", err)
	}

	body, err := json.Marshal(pistonRequest{
		Language: spec.name,
		Version:  version,
		Files:    []pistonFile{{Name: spec.fileName, Content: source}},
	})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/execute", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling execution service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("reading execution response: %w", err)
	}
	var out pistonResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("decoding execution response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, fmt.Errorf("execution service returned %d: %s", resp.StatusCode, msg)
	}

	result := toResult(out)
	c.logger.Debug("code executed",
		zap.String("language", spec.name),
		zap.Duration("took", time.Since(start)),
		zap.Bool("passed", result.Passed()),
	)
	return result, nil
}

func toResult(out pistonResponse) Result {
	if out.Compile != nil && (out.Compile.Stderr != "" || (out.Compile.Code != nil && *out.Compile.Code != 0)) {
		r := stageResult(*out.Compile)
		if r.Stderr == "" {
			r.Stderr = fmt.Sprintf("compilation failed with exit code %d", r.ExitCode)
		}
		return r
	}
	return stageResult(out.Run)
}

func stageResult(s pistonStage) Result {
	r := Result{Stdout: s.Stdout, Stderr: s.Stderr}
	if s.Code != nil {
		r.ExitCode = *s.Code
	}
	if s.Signal != nil && *s.Signal != "" && r.Stderr == "" {
		r.Stderr = "process terminated by " + *s.Signal
	}
	return r
}
