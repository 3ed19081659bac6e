// Package relation builds SOQL query trees for one entity.
//
// A Relation is an immutable value: every builder method returns a new
// Relation and leaves the receiver untouched, so several derived queries
// (a page, a count, a grouped aggregate) can start from one shared base.
//
//	base := relation.New(contact).Where(map[string]any{"MailingCity": "California"})
//	page := base.Order("Name").Limit(20)
//	named := base.WhereRaw("Name LIKE ?", "A%")
//
// Builder errors (a bad raw fragment, an unsupported value) are kept on the
// Relation and reported by Statement, so calls can be chained.
//
// Runner executes relations through a remote.Querier.
package relation
