package browser

import (
	"encoding/json"
	"fmt"
)

// probe is the result of one in-page locator evaluation
type probe struct {
	Found   bool     `json:"found"`
	Visible bool     `json:"visible"`
	Count   int      `json:"count"`
	Text    string   `json:"text"`
	Texts   []string `json:"texts"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
}

// probe operations understood by resolverJS
const (
	opCount = "count"
	opTexts = "texts"
	opText  = "text"
	opValue = "value"
	opAttr  = "attr"
	opCSS   = "css"
	opBox   = "box"
	opFocus = "focus"
	opClear = "clear"
)

// resolverJS resolves an encoded locator in the page and performs a single read
// or preparation step on the result. It never navigates.
const resolverJS = `(function(q, op, arg) {
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
  let nodes = [];
  if (q.xpath) {
    const snap = document.evaluate(q.query, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (let i = 0; i < snap.snapshotLength; i++) {
      const n = snap.snapshotItem(i);
      if (n.nodeType === Node.ELEMENT_NODE) nodes.push(n);
    }
  } else {
    nodes = Array.from(document.querySelectorAll(q.query));
  }
  if (q.mode) {
    const re = q.mode === 'pattern' ? new RegExp(q.text) : null;
    const needle = norm(q.text).toLowerCase();
    nodes = nodes.filter((el) => {
      const t = norm(el.textContent);
      if (re) return re.test(t);
      if (q.mode === 'exact') return t === norm(q.text);
      return t.toLowerCase().includes(needle);
    });
    nodes = nodes.filter((el) => !nodes.some((other) => other !== el && el.contains(other)));
  }
  const isVisible = (el) => {
    const style = window.getComputedStyle(el);
    if (style.visibility === 'hidden' || style.display === 'none') return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 && rect.height > 0;
  };
  if (q.visible) nodes = nodes.filter(isVisible);
  if (q.nth >= 0) nodes = q.nth < nodes.length ? [nodes[q.nth]] : [];

  const res = { found: nodes.length > 0, visible: false, count: nodes.length, text: '', texts: [], x: 0, y: 0 };
  if (op === 'count') return res;
  if (op === 'texts') {
    res.texts = nodes.map((n) => norm(n.textContent));
    return res;
  }
  const el = nodes[0];
  if (!el) return res;
  res.visible = isVisible(el);
  switch (op) {
    case 'text':
      res.text = norm(el.textContent);
      break;
    case 'value':
      res.text = el.value === undefined || el.value === null ? '' : String(el.value);
      break;
    case 'attr': {
      const v = el.getAttribute(arg);
      res.text = v === null ? '' : v;
      break;
    }
    case 'css':
      res.text = window.getComputedStyle(el).getPropertyValue(arg);
      break;
    case 'box':
      if (res.visible) {
        el.scrollIntoView({ block: 'center', inline: 'center' });
        const r = el.getBoundingClientRect();
        res.x = r.left + r.width / 2;
        res.y = r.top + r.height / 2;
      }
      break;
    case 'focus':
      el.focus();
      if (typeof el.select === 'function') el.select();
      break;
    case 'clear': {
      const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
      const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
      el.focus();
      setter.call(el, '');
      el.dispatchEvent(new Event('input', { bubbles: true }));
      el.dispatchEvent(new Event('change', { bubbles: true }));
      break;
    }
  }
  return res;
})`

// probeExpr builds the expression evaluating op against loc
func probeExpr(loc Locator, op, arg string) (string, error) {
	locJSON, err := json.Marshal(loc.wire())
	if err != nil {
		return "", fmt.Errorf("failed to encode locator %s: %w", loc, err)
	}
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("failed to encode argument: %w", err)
	}
	return fmt.Sprintf("%s(%s, %q, %s)", resolverJS, locJSON, op, argJSON), nil
}
