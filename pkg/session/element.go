package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/driver/appium"
)

// Element is a lazily resolved UI element. Every operation looks the element
// up again, so a handle survives re-renders.
type Element struct {
	s   *Session
	sel Selector
}

// Selector returns the element's selector.
func (e *Element) Selector() Selector {
	return e.sel
}

// ID resolves the element and returns its remote ID.
func (e *Element) ID() (string, error) {
	if err := e.s.check(); err != nil {
		return "", err
	}
	id, err := e.s.auto.FindElement(e.sel.Using, e.sel.Value)
	if err != nil {
		if appium.IsNoSuchElement(err) {
			return "", e.notFound(err)
		}
		return "", err
	}
	return id, nil
}

// Exists reports whether at least one element matches.
func (e *Element) Exists() (bool, error) {
	if err := e.s.check(); err != nil {
		return false, err
	}
	ids, err := e.s.auto.FindElements(e.sel.Using, e.sel.Value)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// Click resolves and clicks the element.
func (e *Element) Click() error {
	id, err := e.ID()
	if err != nil {
		return err
	}
	return e.s.auto.ClickElement(id)
}

// Clear resolves and clears the element's value.
func (e *Element) Clear() error {
	id, err := e.ID()
	if err != nil {
		return err
	}
	return e.s.auto.ClearElement(id)
}

// AddValue types text into the element without clearing it first.
func (e *Element) AddValue(text string) error {
	id, err := e.ID()
	if err != nil {
		return err
	}
	return e.s.auto.SetElementValue(id, text)
}

// Text returns the element's text.
func (e *Element) Text() (string, error) {
	id, err := e.ID()
	if err != nil {
		return "", err
	}
	return e.s.auto.GetElementText(id)
}

// Attribute returns the named attribute of the element.
func (e *Element) Attribute(name string) (string, error) {
	id, err := e.ID()
	if err != nil {
		return "", err
	}
	return e.s.auto.GetElementAttribute(id, name)
}

// WaitForExist waits until the element exists and returns its ID.
func (e *Element) WaitForExist(ctx context.Context) (string, error) {
	var id string
	err := e.waitFor(ctx, core.ErrElementNotFound, func() (bool, error) {
		var err error
		id, err = e.ID()
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		return err == nil, err
	})
	return id, err
}

// WaitForEnabled waits until the element exists and is enabled.
func (e *Element) WaitForEnabled(ctx context.Context) error {
	return e.waitFor(ctx, core.ErrElementNotEnabled, func() (bool, error) {
		id, err := e.ID()
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return e.s.auto.IsElementEnabled(id)
	})
}

// WaitForClickable waits until the element is displayed and enabled.
func (e *Element) WaitForClickable(ctx context.Context) error {
	return e.waitFor(ctx, core.ErrElementNotClickable, func() (bool, error) {
		id, err := e.ID()
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		displayed, err := e.s.auto.IsElementDisplayed(id)
		if err != nil || !displayed {
			return false, err
		}
		return e.s.auto.IsElementEnabled(id)
	})
}

func (e *Element) waitFor(ctx context.Context, timeoutErr *core.ExecutionError, cond func() (bool, error)) error {
	return e.s.WaitUntil(ctx, e.sel.Describe(), timeoutErr, cond)
}

// WaitUntil polls cond until it holds, it fails, ctx ends or the session
// wait timeout passes. On timeout the error wraps timeoutErr.
func (s *Session) WaitUntil(ctx context.Context, what string, timeoutErr *core.ExecutionError, cond func() (bool, error)) error {
	deadline := time.Now().Add(s.opts.WaitTimeout)
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return core.ErrWaitTimeout.WithCause(timeoutErr).WithDetails(map[string]interface{}{
				"selector": what,
				"timeout":  s.opts.WaitTimeout.String(),
			})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
}

func (e *Element) notFound(cause error) error {
	return core.ErrElementNotFound.WithCause(cause).WithDetails(map[string]interface{}{
		"selector": e.sel.Describe(),
	})
}

// ClearAndType clears the element matched by sel and types text into it,
// attempting up to TypeAttempts times. If the element stops existing after
// a failed attempt the input was consumed by a screen transition and the
// call succeeds. Once attempts run out the last error is returned.
func (s *Session) ClearAndType(ctx context.Context, sel Selector, text string) error {
	el := s.Element(sel)
	op := func() error {
		err := el.Clear()
		if err == nil {
			err = el.AddValue(text)
		}
		if err == nil {
			return nil
		}
		exists, existsErr := el.Exists()
		if existsErr != nil {
			return backoff.Permanent(existsErr)
		}
		if !exists {
			return nil
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.RetryDelay), TypeAttempts-1)
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// ClickWhilePresent clicks the element matched by sel for as long as it
// exists. Some controls need several clicks across re-renders.
func (s *Session) ClickWhilePresent(ctx context.Context, sel Selector) error {
	el := s.Element(sel)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		exists, err := el.Exists()
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := el.Click(); err != nil {
			if errors.Is(err, core.ErrElementNotFound) || appium.IsNoSuchElement(err) {
				return nil
			}
			return err
		}
	}
}
