package pages

import (
	"context"
	"fmt"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/fixtures"
	"github.com/ternarybob/storefront-e2e/internal/poll"
)

// NavigationPage drives the site header: menus, sublinks and the pages
// they lead to
type NavigationPage struct {
	page
}

// NewNavigationPage creates the page object over session
func NewNavigationPage(session browser.Session, opts Options) *NavigationPage {
	return &NavigationPage{page: newPage(session, opts)}
}

// NavigateToPage opens path and waits for it to load
func (p *NavigationPage) NavigateToPage(ctx context.Context, path string) error {
	if err := p.session.Navigate(ctx, path); err != nil {
		return err
	}
	if err := p.session.WaitForLoad(ctx, browser.LoadStateLoad); err != nil {
		return err
	}
	p.logger.Debug().Str("path", path).Msg("Page loaded")
	return nil
}

// HoverOverNavButton opens a header dropdown and waits for the header to
// settle
func (p *NavigationPage) HoverOverNavButton(ctx context.Context, name string) error {
	if err := p.hover(ctx, NavButton(name), p.opts.Timeouts.Default); err != nil {
		return fmt.Errorf("hover %q: %w", name, err)
	}
	if err := p.visible(ctx, HomeLogo, p.opts.Timeouts.Default); err != nil {
		return fmt.Errorf("hover %q: %w", name, err)
	}
	return p.session.WaitForLoad(ctx, browser.LoadStateLoad)
}

// ValidateSublinksVisible waits for a visible link to each href, in order
func (p *NavigationPage) ValidateSublinksVisible(ctx context.Context, hrefs []string) error {
	for _, href := range hrefs {
		if err := p.visible(ctx, VisibleLink(href), p.opts.Timeouts.Default); err != nil {
			return fmt.Errorf("sublink %s: %w", href, err)
		}
	}
	return nil
}

// NavigateAndValidateContent clicks the menu item for href and waits for the
// destination page to show heading. The click and the heading check are
// retried together.
func (p *NavigationPage) NavigateAndValidateContent(ctx context.Context, href, heading string) error {
	return p.navigate(ctx, href, heading, nil)
}

// NavigateFromMenu is NavigateAndValidateContent for a dropdown link: while
// the link is hidden the menu is hovered open again before the next attempt.
func (p *NavigationPage) NavigateFromMenu(ctx context.Context, menu fixtures.Menu, link fixtures.Link) error {
	reopen := func(ctx context.Context) error {
		if !menu.Dropdown {
			return nil
		}
		return p.session.Hover(ctx, NavButton(menu.Name))
	}
	return p.navigate(ctx, link.Href, link.Heading, reopen)
}

func (p *NavigationPage) navigate(ctx context.Context, href, heading string, reopen func(ctx context.Context) error) error {
	link := MenuItemLink(href)
	title := Heading(heading)

	err := poll.Pass(ctx, func(ctx context.Context) error {
		if err := p.session.Click(ctx, link); err != nil {
			if reopen != nil && poll.IsTransient(err) {
				if hoverErr := reopen(ctx); hoverErr != nil && !poll.IsTransient(hoverErr) {
					return hoverErr
				}
			}
			return err
		}
		if err := p.session.WaitForLoad(ctx, browser.LoadStateLoad); err != nil {
			return err
		}
		visible, err := p.session.Visible(ctx, title)
		if err != nil {
			return err
		}
		if !visible {
			return browser.NotVisible(title)
		}
		return nil
	}, p.policy("navigate "+href, p.opts.Timeouts.Navigation))
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", href, err)
	}
	p.logger.Info().Str("href", href).Str("heading", heading).Msg("Navigation validated")
	return nil
}
