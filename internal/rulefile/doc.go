// Package rulefile loads declarative sync rules from CUE documents.
//
// A rule file declares syncs under a top-level "sync" struct, keyed by
// sync name:
//
//	sync: "cascade.notes": {
//		urgency: "eventual"
//		when: [{
//			concept: "User"
//			action:  "delete"
//			variant: "ok"
//			output: {user: "?u"}
//		}]
//		where: [{
//			query: {
//				concept:  "Note"
//				relation: "byOwner"
//				args: {owner: "?u"}
//				bind: {note: "?n"}
//			}
//		}]
//		then: [{
//			concept: "Note"
//			action:  "delete"
//			fields: {note: "?n"}
//		}]
//	}
//
// Strings with a leading "?" are variable references; everything else
// is a literal. The loader only decodes; structural validation happens
// at catalog registration.
package rulefile
