package browser

// locateJS resolves a Locator inside the page. It returns the first visible
// match, or the number of visible matches when count is true.
const locateJS = `(kind, selector, text, exact, count) => {
	const norm = (s) => (s || "").replace(/\s+/g, " ").trim().toLowerCase();
	const want = norm(text);
	const matches = (s) => exact ? norm(s) === want : norm(s).includes(want);
	const visible = (el) => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);

	const implicitRoles = {
		button: "button, input[type=button], input[type=submit], input[type=reset]",
		link: "a[href]",
		dialog: "dialog[open], [role=alertdialog]",
		alertdialog: "dialog[open]",
		textbox: "input:not([type]), input[type=text], input[type=email], textarea",
		menuitem: "[role=menuitem]",
		table: "table",
	};

	let found = [];
	switch (kind) {
	case "css":
		found = Array.from(document.querySelectorAll(selector));
		break;
	case "label":
		for (const label of document.querySelectorAll("label")) {
			if (!matches(label.textContent)) continue;
			let control = label.control;
			if (!control && label.parentElement) {
				control = label.parentElement.querySelector("input, textarea, select");
			}
			if (control) found.push(control);
		}
		for (const el of document.querySelectorAll("[aria-label], [placeholder]")) {
			if (matches(el.getAttribute("aria-label")) || matches(el.getAttribute("placeholder"))) {
				found.push(el);
			}
		}
		break;
	case "role": {
		let query = "[role=" + JSON.stringify(selector) + "]";
		if (implicitRoles[selector]) query += ", " + implicitRoles[selector];
		for (const el of document.querySelectorAll(query)) {
			const name = [el.getAttribute("aria-label"), el.textContent, el.value].join(" ");
			if (!want || matches(name)) found.push(el);
		}
		break;
	}
	case "text":
		for (const el of document.querySelectorAll("body *")) {
			if (!matches(el.textContent)) continue;
			const inner = Array.from(el.children).some((child) => matches(child.textContent));
			if (!inner) found.push(el);
		}
		break;
	}

	found = found.filter(visible);
	if (count) return found.length;
	return found.length > 0 ? found[0] : null;
}`
