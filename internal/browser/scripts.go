package browser

// serializeJS returns the document with every open shadow root inlined.
// Element.getHTML only emits roots it is given, so they are collected first.
// Browsers without getHTML fall back to outerHTML (light DOM only).
const serializeJS = `() => {
	const root = document.documentElement;
	if (!root) return "";
	if (typeof root.getHTML !== "function") return root.outerHTML;
	const roots = [];
	const visit = (node) => {
		for (const el of node.querySelectorAll("*")) {
			if (el.shadowRoot && el.shadowRoot.mode === "open") {
				roots.push(el.shadowRoot);
				visit(el.shadowRoot);
			}
		}
	};
	visit(document);
	const attrs = Array.from(root.attributes)
		.map((a) => " " + a.name + "=\"" + a.value.replace(/&/g, "&amp;").replace(/"/g, "&quot;") + "\"")
		.join("");
	return "<html" + attrs + ">" + root.getHTML({ serializableShadowRoots: true, shadowRoots: roots }) + "</html>";
}`

// locationJS reports the frame's current URL.
const locationJS = `() => location.href`

// navigationBinding is the CDP binding the history hooks call.
const navigationBinding = "__jobscanNavigate"

// historyHookJS wraps pushState and replaceState and listens for popstate.
// Payload: "<kind>|<url>" with kind programmatic or history.
const historyHookJS = `() => {
	if (window.__jobscanHooked) return;
	window.__jobscanHooked = true;
	const send = (kind) => {
		try { window.__jobscanNavigate(kind + "|" + location.href); } catch (e) {}
	};
	for (const name of ["pushState", "replaceState"]) {
		const original = history[name];
		history[name] = function (...args) {
			const result = original.apply(this, args);
			send("programmatic");
			return result;
		};
	}
	window.addEventListener("popstate", () => send("history"));
	window.addEventListener("hashchange", () => send("history"));
}`

// dispatchBinding is the CDP binding the flow-trigger click hook calls.
const dispatchBinding = "__jobscanDispatch"

// flowTriggerHookJS reports clicks on elements matching
// window.__jobscanTriggers. Payload: the enclosing link's href, or the page
// URL when the trigger is not a link. The listener runs in the capture phase
// so handlers that stop propagation cannot hide the click.
const flowTriggerHookJS = `() => {
	if (window.__jobscanDispatchHooked) return;
	window.__jobscanDispatchHooked = true;
	document.addEventListener("click", (e) => {
		const target = e.target;
		if (!target || typeof target.closest !== "function") return;
		for (const sel of window.__jobscanTriggers || []) {
			let hit = null;
			try { hit = target.closest(sel); } catch (err) { continue; }
			if (!hit) continue;
			const link = hit.closest("a[href]");
			try { window.__jobscanDispatch(link ? link.href : location.href); } catch (err) {}
			return;
		}
	}, true);
}`

// setFlowTriggersJS replaces the selectors the click hook matches.
const setFlowTriggersJS = `(selectors) => { window.__jobscanTriggers = selectors; }`
