// Package page holds the parsed document of a textbook page. It wraps an
// HTML tree and exposes the attribute and ancestry queries the read-aloud
// engine needs (identifiers, classes, main region, navigation menus).
package page
