// Package output renders command results as a table, JSON or YAML.
//
// Tables are derived from struct fields, using the json tag for column
// names; fields tagged table:"-" are hidden and table:"wide" only appear
// with --wide. JSON and YAML render the value as-is for scripting.
package output
