package main

// DefaultHistoryLimit is the number of journal entries shown by default.
const DefaultHistoryLimit = 20

// Valid export formats.
var validFormats = []string{"json", "csv", "markdown"}
