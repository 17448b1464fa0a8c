// Package common keeps enumerations shared between configuration and the
// annotation processing packages, so neither has to import the other.
package common

//go:generate go tool go-enum --marshal --nocase --names

// Highlight colors reader applications report.
// ENUM(Blue, Gray, Green, Orange, Pink, Purple, Red, Yellow)
type HighlightColor string

// DefaultHighlightColor is assigned when the source did not report a color.
const DefaultHighlightColor = HighlightColorGreen

// Order of annotations inside rendered container.
// ENUM(location, timestamp)
type SortKey string

// What to do with previously rendered annotations which could not be
// decomposed back into individual records.
// ENUM(concatenate, replace)
type LegacyPolicy string
