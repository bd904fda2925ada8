package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Signal is a cooperative cancellation flag. *cancel.Signal satisfies it.
type Signal interface {
	Done() <-chan struct{}
}

// fragment is one decoded NDJSON line of a streamed generate response.
type fragment struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// parseFragment decodes one line. Blank and malformed lines report false.
func parseFragment(line []byte) (fragment, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return fragment{}, false
	}
	var f fragment
	if err := json.Unmarshal(line, &f); err != nil {
		return fragment{}, false
	}
	return f, true
}

// TokenStream is a lazy sequence of tokens from one generate call.
// It is not safe for concurrent use by multiple goroutines.
type TokenStream struct {
	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc
	body        io.ReadCloser
	r           *bufio.Reader
	sig         Signal
	idle        *time.Timer
	readTimeout time.Duration
	idleFired   atomic.Bool

	err       error
	closeOnce sync.Once
}

// Stream starts a streaming generation. The returned stream must be closed.
// sig may be nil.
func (c *Client) Stream(ctx context.Context, req Request, sig Signal) (*TokenStream, error) {
	s := &TokenStream{parent: ctx, sig: sig, readTimeout: c.readTimeout}
	if c.requestTimeout > 0 {
		s.ctx, s.cancel = context.WithTimeout(ctx, c.requestTimeout)
	} else {
		s.ctx, s.cancel = context.WithCancel(ctx)
	}
	s.idle = time.AfterFunc(c.readTimeout, func() {
		s.idleFired.Store(true)
		s.cancel()
	})
	if sig != nil {
		// Unblock a pending read as soon as the signal is set.
		go func() {
			select {
			case <-sig.Done():
				s.cancel()
			case <-s.ctx.Done():
			}
		}()
	}

	hr, err := c.newGenerate(s.ctx, req, true)
	if err != nil {
		s.idle.Stop()
		s.cancel()
		return nil, err
	}
	resp, err := c.httpClient.Do(hr)
	if err != nil {
		switch {
		case s.canceled():
			err = ErrCanceled
		case ctx.Err() != nil:
			err = ctx.Err()
		default:
			err = classifyDoErr(s.ctx, err, s.idleFired.Load())
		}
		s.Close()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		s.Close()
		return nil, protocolError(resp.StatusCode)
	}
	s.body = resp.Body
	s.r = bufio.NewReader(resp.Body)
	s.idle.Reset(s.readTimeout)
	return s, nil
}

func (s *TokenStream) canceled() bool {
	if s.sig == nil {
		return false
	}
	select {
	case <-s.sig.Done():
		return true
	default:
		return false
	}
}

// Next returns the next non-empty token. It returns io.EOF when the backend
// signals completion or closes the connection, ErrCanceled once the signal is
// set, or a *BackendError. After a non-nil error every call returns the same
// error.
func (s *TokenStream) Next() (string, error) {
	for {
		if s.err != nil {
			return "", s.err
		}
		if s.canceled() {
			s.finish(ErrCanceled)
			return "", s.err
		}
		line, rerr := s.r.ReadBytes('\n')
		var tok string
		if len(line) > 0 {
			s.idle.Reset(s.readTimeout)
			if f, ok := parseFragment(line); ok {
				if f.Done {
					s.finish(io.EOF)
					return "", io.EOF
				}
				tok = f.Response
			}
		}
		if rerr != nil {
			s.finish(s.readErr(rerr))
		}
		if tok != "" {
			if s.canceled() {
				s.err = ErrCanceled
				s.Close()
				return "", ErrCanceled
			}
			return tok, nil
		}
	}
}

func (s *TokenStream) readErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if s.canceled() {
		return ErrCanceled
	}
	if s.parent.Err() != nil {
		return s.parent.Err()
	}
	if errors.Is(err, http.ErrBodyReadAfterClose) {
		return io.EOF
	}
	return classifyDoErr(s.ctx, err, s.idleFired.Load())
}

func (s *TokenStream) finish(err error) {
	if s.err == nil {
		s.err = err
	}
	s.Close()
}

// Close releases the connection. It is idempotent.
func (s *TokenStream) Close() error {
	s.closeOnce.Do(func() {
		s.idle.Stop()
		s.cancel()
		if s.body != nil {
			s.body.Close()
		}
	})
	return nil
}
