package gitlab

// Test hooks for unexported internals.
var MrTitleForTest = mrTitle
