package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Logical backend endpoints. The backend contract is assumed, not owned:
// we only depend on the shapes below.
const (
	loginPath    = "/users/login"
	registerPath = "/students/register"
	profilePath  = "/users/profile"
)

const defaultRequestTimeout = 15 * time.Second

// loginEnvelope is the session-creation success body.
type loginEnvelope struct {
	Token   string `json:"token"`
	User    *User  `json:"user"`
	Message string `json:"message"`
}

// messageEnvelope covers registration success and every failure body.
type messageEnvelope struct {
	Message string `json:"message"`
}

// profileEnvelope is the profile refresh success body.
type profileEnvelope struct {
	User *User `json:"user"`
}

type transport struct {
	baseURL string
	scheme  string
	client  *http.Client
	logger  Logger
}

func newTransport(cfg Config, logger Logger) *transport {
	timeout := defaultRequestTimeout
	if cfg.GetRequestTimeout() > 0 {
		timeout = time.Duration(cfg.GetRequestTimeout()) * time.Second
	}

	scheme := cfg.GetAuthScheme()
	if scheme == "" {
		scheme = "Bearer"
	}

	return &transport{
		baseURL: strings.TrimRight(cfg.GetBaseURL(), "/"),
		scheme:  scheme,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (t *transport) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

func (t *transport) postMultipart(ctx context.Context, path string, fields map[string]string, image *ProfileImage) (int, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode form field")
		}
	}

	if image != nil && image.Reader != nil {
		part, err := writer.CreatePart(imagePartHeader(image))
		if err != nil {
			return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to attach profile image")
		}
		if _, err := io.Copy(part, image.Reader); err != nil {
			return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read profile image")
		}
	}

	if err := writer.Close(); err != nil {
		return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, &buf)
	if err != nil {
		return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return t.do(req)
}

// imagePartHeader declares the image part with its content type; a
// payload that does not state one falls back to octet-stream.
func imagePartHeader(image *ProfileImage) textproto.MIMEHeader {
	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, image.Filename))
	header.Set("Content-Type", contentType)
	return header
}

func (t *transport) get(ctx context.Context, path, token string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return 0, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Authorization", t.scheme+" "+token)

	return t.do(req)
}

// do executes the request and drains the body. A transport-level error
// (refused connection, timeout) settles as NETWORK_ERROR; there is no
// automatic retry at this layer.
func (t *transport) do(req *http.Request) (int, []byte, error) {
	res, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return 0, nil, goerrors.Wrap(err, goerrors.CategoryOperation, GenericFailureMessage).
			WithTextCode(TextCodeNetworkError)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, goerrors.Wrap(err, goerrors.CategoryOperation, GenericFailureMessage).
			WithTextCode(TextCodeNetworkError)
	}

	return res.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// decodeMessage pulls the server-supplied message out of a failure body,
// tolerating an absent or malformed payload.
func decodeMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope messageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	return strings.TrimSpace(envelope.Message)
}

// apiFailure maps a non-2xx settlement onto a tagged error carrying the
// server message when one was supplied, or the generic fallback.
func apiFailure(status int, body []byte, unauthorizedTextCode string) error {
	message := decodeMessage(body)
	if message == "" {
		message = GenericFailureMessage
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(unauthorizedTextCode).
			WithCode(goerrors.CodeUnauthorized)
	case status == http.StatusConflict:
		return goerrors.New(message, goerrors.CategoryConflict).
			WithTextCode(TextCodeDuplicateAccount).
			WithCode(goerrors.CodeConflict)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return goerrors.New(message, goerrors.CategoryValidation).
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest)
	default:
		return goerrors.New(message, goerrors.CategoryOperation).
			WithTextCode(TextCodeUpstreamError)
	}
}
