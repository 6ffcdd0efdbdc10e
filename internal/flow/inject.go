package flow

// InjectedScript is evaluated inside the gateway webview. It watches the
// history API and polls location.href as a catch-all for client-side-only
// redirects, posting a VNPAY_RESPONSE envelope back to the host when a
// terminal URL is detected. The native navigation event and this message may
// both fire for the same redirect; the machine's latch dedups them.
const InjectedScript = `(function() {
	var posted = false;
	function check(url) {
		if (posted) return;
		if (url.indexOf('vnp_ResponseCode=') === -1) return;
		posted = true;
		window.ReactNativeWebView.postMessage(JSON.stringify({
			type: 'VNPAY_RESPONSE',
			url: url
		}));
	}
	function wrap(fn) {
		return function() {
			var result = fn.apply(this, arguments);
			check(window.location.href);
			return result;
		};
	}
	history.pushState = wrap(history.pushState);
	history.replaceState = wrap(history.replaceState);
	window.addEventListener('hashchange', function() { check(window.location.href); });
	window.addEventListener('popstate', function() { check(window.location.href); });
	setInterval(function() { check(window.location.href); }, 500);
	check(window.location.href);
})(); true;`
