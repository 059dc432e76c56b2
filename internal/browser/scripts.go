package browser

// printOverrideJS runs before any page script on every new document
const printOverrideJS = `
window.__billshotPrintCalls = 0;
window.print = () => {
	window.__billshotPrintCalls++;
	console.log('window.print called');
};
`

const printCallsJS = `() => window.__billshotPrintCalls || 0`

// settledJS holds once the print override has fired and the element exists
const settledJS = `(id) => (window.__billshotPrintCalls || 0) > 0 && !!document.getElementById(id)`

// revealJS returns false when the element is missing
const revealJS = `(id) => {
	const bill = document.getElementById(id);
	if (!bill) return false;
	bill.style.display = 'block';
	bill.style.position = 'fixed';
	bill.style.top = '50%';
	bill.style.left = '50%';
	bill.style.transform = 'translate(-50%, -50%)';
	bill.style.zIndex = '9999';
	bill.style.background = 'white';
	bill.style.boxShadow = '0 0 20px rgba(0,0,0,0.5)';
	return true;
}`

const outerHTMLJS = `(id) => {
	const el = document.getElementById(id);
	return el ? el.outerHTML : null;
}`
