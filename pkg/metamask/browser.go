package metamask

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
)

// shadowScript resolves a shadowPath in the page and applies an operation to
// the final element. Each part is searched for in the previous match's
// shadow root, descending through nested shadow roots as needed.
const shadowScript = `
const [parts, op, text] = arguments;
const deep = (root, sel) => {
  const hit = root.querySelector(sel);
  if (hit) return hit;
  for (const el of root.querySelectorAll("*")) {
    if (el.shadowRoot) {
      const found = deep(el.shadowRoot, sel);
      if (found) return found;
    }
  }
  return null;
};
let scope = document;
let el = null;
for (const part of parts) {
  el = deep(scope, part);
  if (!el) return false;
  scope = el.shadowRoot || el;
}
switch (op) {
  case "exists":
    return true;
  case "clickable":
    return !el.disabled && el.getClientRects().length > 0;
  case "click":
    el.click();
    return true;
  case "type":
    el.value = text;
    el.dispatchEvent(new Event("input", { bubbles: true, composed: true }));
    return true;
}
return false;`

// shadowPath locates an element inside web components.
type shadowPath []string

func (p shadowPath) String() string {
	return ">>>" + strings.Join(p, " ")
}

func (p shadowPath) run(s *session.Session, op, text string) (bool, error) {
	res, err := s.Execute(shadowScript, []string(p), op, text)
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

func (p shadowPath) wait(ctx context.Context, s *session.Session, op string, timeoutErr *core.ExecutionError) error {
	return s.WaitUntil(ctx, p.String(), timeoutErr, func() (bool, error) {
		return p.run(s, op, "")
	})
}

func (p shadowPath) click(ctx context.Context, s *session.Session) error {
	if err := p.wait(ctx, s, "clickable", core.ErrElementNotClickable); err != nil {
		return err
	}
	ok, err := p.run(s, "click", "")
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrElementNotFound.WithDetails(map[string]interface{}{"selector": p.String()})
	}
	return nil
}

func (p shadowPath) typeText(ctx context.Context, s *session.Session, text string) error {
	if err := p.wait(ctx, s, "exists", core.ErrElementNotFound); err != nil {
		return err
	}
	ok, err := p.run(s, "type", text)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrElementNotFound.WithDetails(map[string]interface{}{"selector": p.String()})
	}
	return nil
}

// openWalletFromPage drives the test page's WalletConnect modal to MetaMask
// and accepts the system prompt that hands over to the app.
func openWalletFromPage(ctx context.Context, b *session.Session, url string) error {
	if err := b.NavigateTo(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	wc := b.Element(walletConnectButton)
	if err := wc.WaitForClickable(ctx); err != nil {
		return fmt.Errorf("walletconnect button: %w", err)
	}
	if err := wc.Click(); err != nil {
		return fmt.Errorf("walletconnect button: %w", err)
	}

	if err := viewAllWallets.click(ctx, b); err != nil {
		return fmt.Errorf("view all wallets: %w", err)
	}
	if err := walletSearchInput.typeText(ctx, b, "metamask"); err != nil {
		return fmt.Errorf("search wallets: %w", err)
	}
	if err := metamaskWalletBtn.click(ctx, b); err != nil {
		return fmt.Errorf("metamask button: %w", err)
	}

	alertMissing := core.ErrElementNotFound.WithMessage("open-app alert not shown")
	err := b.WaitUntil(ctx, "alert", alertMissing, func() (bool, error) {
		return b.AcceptAlert() == nil, nil
	})
	if err != nil {
		return fmt.Errorf("accept alert: %w", err)
	}
	return nil
}
