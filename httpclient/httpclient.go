package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrApiVersionMismatch  = errors.New("api version mismatch")
	ErrApiHeaderMismatch   = errors.New("api header mismatch")
	ErrStatusCodeMismatch  = errors.New("status code mismatch")
	ErrContentTypeMismatch = errors.New("content type mismatch")
	ErrRejectedByServer    = errors.New("rejected by server")
)

// ResponseError is returned when the server responds with an error status code.
// Message holds the error reported by the server in the JSON body if any.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("server responded with status code %d: %s", e.StatusCode, e.Message)
}

// Is makes the ResponseError match ErrStatusCodeMismatch and ErrRejectedByServer.
func (e *ResponseError) Is(target error) bool {
	return target == ErrStatusCodeMismatch || target == ErrRejectedByServer
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MakePost posts out as JSON and decodes the JSON response in to in.
func MakePost(timeout time.Duration, url string, out, in any) error {
	return MakePostAuthorized(timeout, url, "", out, in)
}

// MakePostAuthorized works as MakePost and sets the Authorization header when authorization isn't empty.
func MakePostAuthorized(timeout time.Duration, url, authorization string, out, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if authorization != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, authorization)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req.SetBody(raw)

	return do(timeout, req, in)
}

// MakeGet gets the resource and decodes the JSON response in to out.
func MakeGet(timeout time.Duration, url string, out any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	return do(timeout, req, out)
}

func do(timeout time.Duration, req *fasthttp.Request, in any) error {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return err
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK, fasthttp.StatusCreated, fasthttp.StatusAccepted:
	case fasthttp.StatusNoContent:
		return nil
	default:
		return responseError(resp)
	}

	contentType := resp.Header.Peek(fasthttp.HeaderContentType)
	if !bytes.HasPrefix(contentType, []byte("application/json")) {
		return errors.Join(
			ErrContentTypeMismatch,
			fmt.Errorf("expected content type application/json but got %s", contentType))
	}
	if in == nil {
		return nil
	}

	return json.Unmarshal(resp.Body(), in)
}

func responseError(resp *fasthttp.Response) error {
	e := &ResponseError{StatusCode: resp.StatusCode()}
	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		e.Message = body.Error
		if e.Message == "" {
			e.Message = body.Message
		}
	}
	if e.Message == "" {
		e.Message = string(bytes.TrimSpace(resp.Body()))
	}
	return e
}
