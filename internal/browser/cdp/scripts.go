// File: internal/browser/cdp/scripts.go
package cdp

import (
	"fmt"

	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// Every function below runs through Runtime.callFunctionOn, with `this`
// bound to the current frame's window or to an element.

// staleGuard fails element functions once the node has left the document.
const staleGuard = `if (!this.isConnected) { throw new Error('stale element reference: node is detached'); }
`

// findFn resolves a locator below `this`, a window or an element.
const findFn = `function(kind, value) {
	if (this.nodeType && !this.isConnected) { throw new Error('stale element reference: node is detached'); }
	const root = this.document ? this.document : this;
	const doc = root.ownerDocument || root;
	switch (kind) {
	case 'id':
		return Array.from(root.querySelectorAll('[id="' + value.replace(/["\\]/g, '\\$&') + '"]'));
	case 'css':
		return Array.from(root.querySelectorAll(value));
	case 'class':
		return Array.from(root.getElementsByClassName(value));
	case 'tag':
		return Array.from(root.getElementsByTagName(value));
	case 'link':
	case 'partial': {
		const out = [];
		for (const a of root.querySelectorAll('a')) {
			const text = (a.innerText || a.textContent || '').trim();
			if (kind === 'link' ? text === value : text.includes(value)) { out.push(a); }
		}
		return out;
	}
	case 'xpath': {
		const snap = doc.evaluate(value, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < snap.snapshotLength; i++) {
			const n = snap.snapshotItem(i);
			if (n.nodeType === 1) { out.push(n); }
		}
		return out;
	}
	}
	throw new Error('unsupported locator ' + kind);
}`

const lengthFn = `function() { return this.length; }`

const itemFn = `function(i) { return this[i]; }`

// frameWindowFn returns the window of the child frame with the given id or
// name, or null.
const frameWindowFn = `function(id) {
	const d = this.document;
	const f = d.getElementById(id) || d.getElementsByName(id)[0];
	if (!f || (f.tagName !== 'IFRAME' && f.tagName !== 'FRAME') || !f.contentWindow) { return null; }
	try {
		f.contentWindow.document;
	} catch (e) {
		throw new Error('no such frame: ' + id + ' is cross-origin');
	}
	return f.contentWindow;
}`

const displayedFn = `function() {
	` + staleGuard + `const el = this.tagName === 'OPTION' ? (this.closest('select') || this) : this;
	const style = el.ownerDocument.defaultView.getComputedStyle(el);
	if (style.display === 'none' || style.visibility === 'hidden' || style.visibility === 'collapse') { return false; }
	const rect = el.getBoundingClientRect();
	return el.getClientRects().length > 0 && (rect.width > 0 || rect.height > 0);
}`

const enabledFn = `function() {
	` + staleGuard + `return !this.matches(':disabled');
}`

const selectedFn = `function() {
	` + staleGuard + `return !!(this.checked || this.selected);
}`

const textFn = `function() {
	` + staleGuard + `return (this.innerText === undefined ? this.textContent : this.innerText).trim();
}`

const attributeFn = `function(name) {
	` + staleGuard + `return this.getAttribute(name);
}`

const tagNameFn = `function() {
	` + staleGuard + `return this.tagName.toLowerCase();
}`

// clickPointFn scrolls the element into view and returns its center in
// top-level viewport coordinates, adding the offset of every enclosing frame.
const clickPointFn = `function() {
	` + staleGuard + `this.scrollIntoView({block: 'center', inline: 'center'});
	const rect = this.getBoundingClientRect();
	if (rect.width === 0 || rect.height === 0) { throw new Error('element not interactable: it has no size'); }
	let x = rect.left + rect.width / 2, y = rect.top + rect.height / 2;
	const hit = this.ownerDocument.elementFromPoint(x, y);
	if (hit !== this && !this.contains(hit)) {
		throw new Error('element not interactable: click would land on <' + (hit ? hit.tagName.toLowerCase() : 'nothing') + '>');
	}
	let win = this.ownerDocument.defaultView;
	while (win.frameElement) {
		const frame = win.frameElement, box = frame.getBoundingClientRect();
		const style = win.parent.getComputedStyle(frame);
		x += box.left + frame.clientLeft + parseFloat(style.paddingLeft);
		y += box.top + frame.clientTop + parseFloat(style.paddingTop);
		win = win.parent;
	}
	return [x, y];
}`

// focusFn focuses the element with the caret at the end of its value.
const focusFn = `function() {
	` + staleGuard + `this.scrollIntoView({block: 'center', inline: 'nearest'});
	this.focus();
	if (typeof this.value === 'string' && typeof this.setSelectionRange === 'function') {
		try { this.setSelectionRange(this.value.length, this.value.length); } catch (e) {}
	}
	const active = this.ownerDocument.activeElement;
	return active === this || this.contains(active);
}`

const clearFn = `function() {
	` + staleGuard + `if (this.disabled || this.readOnly) { throw new Error('element not interactable: it is read-only'); }
	if (this.isContentEditable) {
		this.textContent = '';
	} else {
		this.value = '';
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

// wrapScript turns a WebDriver style script body into a function that runs
// against the frame window bound to `this`.
func wrapScript(script string) string {
	return "function() {\nconst window = this, document = this.document;\n" + script + "\n}"
}

// strategy names the findFn branch for a locator.
func strategy(loc locator.Locator) (string, error) {
	switch loc.Kind {
	case locator.ByID:
		return "id", nil
	case locator.ByCSS:
		return "css", nil
	case locator.ByXPath:
		return "xpath", nil
	case locator.ByLinkText:
		return "link", nil
	case locator.ByPartialLinkText:
		return "partial", nil
	case locator.ByClassName:
		return "class", nil
	case locator.ByTagName:
		return "tag", nil
	}
	return "", fmt.Errorf("unsupported locator %s", loc)
}
