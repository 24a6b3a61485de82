// File: internal/executor/js.go
// Description: In-page snippets used by the executor. Each one resolves the
// target with document.querySelector and reports back a JSON-decodable value.

package executor

import "fmt"

// elementProbe is what probeJS reports about the live element.
type elementProbe struct {
	Found bool   `json:"found"`
	Tag   string `json:"tag"`
	Type  string `json:"type"`
	Role  string `json:"role"`
}

func probeJS(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return { found: false, tag: "", type: "", role: "" };
  return {
    found: true,
    tag: el.tagName.toLowerCase(),
    type: (el.getAttribute("type") || "").toLowerCase(),
    role: (el.getAttribute("role") || "").toLowerCase()
  };
})()`, selector)
}

// setCheckboxJS toggles only when the current state differs from desired.
func setCheckboxJS(selector string, desired bool) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  if (!!el.checked !== %t) el.click();
  return true;
})()`, selector, desired)
}

// selectRadioJS picks the sibling radio whose value equals the payload,
// falling back to clicking the target itself.
func selectRadioJS(selector, payload string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  const name = el.getAttribute("name");
  if (name) {
    for (const r of document.querySelectorAll("input[type='radio'][name='" + CSS.escape(name) + "']")) {
      if ((r.getAttribute("value") || "") === %q) { r.click(); return true; }
    }
  }
  el.click();
  return true;
})()`, selector, payload)
}

// setSelectJS assigns the option value and verifies it stuck.
func setSelectJS(selector, payload string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  el.value = %q;
  el.dispatchEvent(new Event("change", { bubbles: true }));
  return el.value === %q;
})()`, selector, payload, payload)
}

// setTextJS writes the value and fires the events frameworks listen for.
func setTextJS(selector, payload string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  el.focus && el.focus();
  el.value = %q;
  el.dispatchEvent(new Event("input", { bubbles: true }));
  el.dispatchEvent(new Event("change", { bubbles: true }));
  return true;
})()`, selector, payload)
}

// submitJS clicks the submit control of the enclosing form, or any
// submit-looking button on the page. Reports whether something was clicked.
func submitJS(selector string) string {
	return fmt.Sprintf(`(() => {
  let el = document.querySelector(%q);
  while (el && el.nodeName.toLowerCase() !== "form") el = el.parentElement;
  let btn = el ? el.querySelector("button[type='submit'], input[type='submit']") : null;
  if (!btn) {
    btn = document.querySelector("button[type='submit'], input[type='submit']");
  }
  if (!btn) {
    for (const b of document.querySelectorAll("button")) {
      const label = (b.innerText || "").trim().toLowerCase();
      if (label === "submit" || label === "send") { btn = b; break; }
    }
  }
  if (!btn) return false;
  btn.click();
  return true;
})()`, selector)
}

// observeJS reads the post-interaction state of the element.
func observeJS(selector, kind string) string {
	switch kind {
	case kindCheckbox:
		return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  return el ? String(!!el.checked) : "";
})()`, selector)
	case kindRadio:
		return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return "";
  return el.checked ? (el.value || "true") : "false";
})()`, selector)
	default:
		return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  return el && el.value !== undefined ? String(el.value) : "";
})()`, selector)
	}
}

// feedbackTextsJS collects the visible texts of common validation surfaces.
const feedbackTextsJS = `Array.from(
  document.querySelectorAll("[role='alert'], .error, .invalid, .field-error, .alert, .validation-message")
).map((el) => (el.innerText || "").trim().slice(0, 400)).filter((t) => t.length > 0)`
