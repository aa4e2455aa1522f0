// Package codec frames payloads as byte streams and converts between
// element trees and the row-oriented payload wire format.
//
// A payload is a sequence of newline-terminated rows:
//
//	<hex id>:<tag?><json>
//
// Row 0 is the root. Rows tagged I declare a client component import
// ({"id","name","chunks"}); rows tagged E carry a server-side render error
// ({"message"}); untagged rows hold JSON models. Inside a model:
//
//	["$", type, key, props]   an element
//	"$L<hex>"                 as an element type: the client import in row <hex>
//	"$<hex>"                  the model in row <hex>
//	"$$..."                   a string that starts with a literal "$"
//
// Example:
//
//	1:I{"id":"./issue-row","name":"IssueRow","chunks":["issues"]}
//	0:["$","ul",null,{"children":["$","$L1",null,{"number":42}]}]
package codec
