// Package aggregate rewrites COUNT, SUM, AVG, MIN and MAX requests on a
// relation into the narrow aggregate forms SOQL accepts, runs them, and
// decodes the rows.
//
// Three shapes are produced:
//
//	simple         SELECT SUM(Amount) FROM Opportunity WHERE ...
//	count subquery SELECT COUNT(Id) FROM Account WHERE ... LIMIT 10 OFFSET 10
//	grouped        SELECT COUNT(Id) count_all, Name name FROM Account GROUP BY Name
//
// A count on a relation with LIMIT 0 returns 0 without any remote call.
//
// Grouping on a single belongs-to association groups by its foreign key and
// then loads the related records with one batched query, attaching each to
// its group.
package aggregate
