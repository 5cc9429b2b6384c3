// Package dedupe rejects task ids that were already submitted within a short
// window, so a client retrying a request does not get it delegated twice.
package dedupe
