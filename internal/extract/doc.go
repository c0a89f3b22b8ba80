// Package extract turns loaded pages into catalog entries and entity fields.
//
// Every extractor works against a browser.Page it does not own. Lookups go
// through a Resolver that walks ordered selector candidates, and a missing
// element always resolves to the field's empty default rather than an error.
package extract
