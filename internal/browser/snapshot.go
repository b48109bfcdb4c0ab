package browser

// snapshotScript collects the interactable elements of the current page
// with the accessible attributes the heuristic resolver ranks on. Each
// node carries a CSS path stable enough to be cached and re-queried.
const snapshotScript = `(() => {
	const cssPath = (el) => {
		const parts = [];
		while (el && el.nodeType === Node.ELEMENT_NODE && el !== document.body) {
			let part = el.tagName.toLowerCase();
			if (el.id) {
				parts.unshift(part + '#' + CSS.escape(el.id));
				return parts.join(' > ');
			}
			let index = 1;
			let sibling = el.previousElementSibling;
			while (sibling) {
				if (sibling.tagName === el.tagName) index++;
				sibling = sibling.previousElementSibling;
			}
			parts.unshift(part + ':nth-of-type(' + index + ')');
			el = el.parentElement;
		}
		parts.unshift('body');
		return parts.join(' > ');
	};

	const selector = 'a, button, input, select, textarea, label, [role], [onclick], [contenteditable], h1, h2, h3, h4, h5, h6';
	const nodes = [];
	for (const el of document.querySelectorAll(selector)) {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.visibility !== 'hidden' && style.display !== 'none';
		const text = (el.innerText || el.value || '').trim().slice(0, 200);
		nodes.push({
			selector: cssPath(el),
			tag: el.tagName.toLowerCase(),
			role: el.getAttribute('role') || '',
			text: text,
			label: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			visible: visible,
			box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
		});
	}
	return nodes;
})()`
