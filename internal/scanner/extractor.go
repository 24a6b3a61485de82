// File: internal/scanner/extractor.go
// Description: In-page JavaScript for interactive element extraction and
// canvas text capture. Kept as raw constants so the scanner stays testable
// against a fake page.

package scanner

// extractorJS walks the document, open shadow roots and same-origin iframes,
// emitting one record per interactive element. Cross-origin frames throw on
// contentDocument access and are skipped silently.
const extractorJS = `(() => {
  const results = [];
  const visited = new WeakSet();

  function cssPath(el) {
    if (!el) return null;
    const path = [];
    while (el && el.nodeType === 1) {
      let name = el.tagName.toLowerCase();
      if (el.id) { name += "#" + el.id; path.unshift(name); break; }
      let sib = el, idx = 1;
      while ((sib = sib.previousElementSibling)) idx++;
      name += ":nth-child(" + idx + ")";
      path.unshift(name);
      el = el.parentElement;
    }
    return path.join(" > ");
  }

  function isInteractive(node) {
    if (!node || node.nodeType !== 1) return false;
    const tag = node.tagName.toLowerCase();
    if (["input", "textarea", "select", "button", "a", "summary", "label"].includes(tag)) return true;
    if (node.hasAttribute && node.hasAttribute("contenteditable")) return true;
    const role = node.getAttribute && node.getAttribute("role");
    if (role && /(button|textbox|slider|menuitem|switch|link|combobox|search|tab|checkbox)/.test(role)) return true;
    try { if (node.tabIndex >= 0) return true; } catch (e) {}
    if (node.onclick || node.oninput || node.onchange) return true;
    return false;
  }

  function walk(node, frameURL) {
    if (!node || visited.has(node)) return;
    visited.add(node);
    try {
      if (isInteractive(node)) {
        results.push({
          tag: node.tagName.toLowerCase(),
          type: (node.getAttribute && node.getAttribute("type")) || "",
          name: (node.getAttribute && node.getAttribute("name")) || "",
          id: node.id || "",
          role: (node.getAttribute && node.getAttribute("role")) || "",
          placeholder: (node.getAttribute && node.getAttribute("placeholder")) || "",
          text: node.innerText ? node.innerText.trim().slice(0, 300) : "",
          visible: !!(node.offsetWidth || node.offsetHeight || node.getClientRects().length),
          selector: cssPath(node),
          frame_url: frameURL || ""
        });
      }
      if (node.shadowRoot) { try { walk(node.shadowRoot, frameURL); } catch (e) {} }
      if (node.tagName && node.tagName.toLowerCase() === "iframe") {
        try {
          const doc = node.contentDocument;
          if (doc) walk(doc, node.contentWindow.location.href);
        } catch (e) {}
      }
      for (const c of (node.children || [])) walk(c, frameURL);
    } catch (e) {}
  }

  walk(document, "");
  return results;
})()`

// canvasHookJS wraps the 2D context text primitives so painted strings can
// be read back after the fact. Idempotent across re-injection.
const canvasHookJS = `(() => {
  try {
    if (window.__fsCanvasHookInstalled) return;
    window.__fsCanvasHookInstalled = true;
    window.__fsCanvasTexts = [];
    const proto = CanvasRenderingContext2D.prototype;
    const origFill = proto.fillText;
    const origStroke = proto.strokeText;

    proto.fillText = function (text, x, y, ...rest) {
      try { window.__fsCanvasTexts.push({ kind: "fillText", text: String(text), x: x, y: y }); } catch (e) {}
      return origFill.apply(this, [text, x, y, ...rest]);
    };
    proto.strokeText = function (text, x, y, ...rest) {
      try { window.__fsCanvasTexts.push({ kind: "strokeText", text: String(text), x: x, y: y }); } catch (e) {}
      return origStroke.apply(this, [text, x, y, ...rest]);
    };
  } catch (e) {}
})()`

const readCanvasTextsJS = `(window.__fsCanvasTexts || [])`

// rasterizeCanvasesJS returns each canvas as a PNG data URL; canvases
// tainted by cross-origin content yield null.
const rasterizeCanvasesJS = `Array.from(document.querySelectorAll("canvas")).map((c) => {
  try { return c.toDataURL("image/png"); } catch (e) { return null; }
})`
