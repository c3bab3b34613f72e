// Package schema is the single source of truth for translating between
// market tickers and store keys across both venues, and between store
// keys and parsed descriptors.
//
// Key layout (colon-delimited, lowercase namespace segments):
//
//	markets:kalshi:<category>:<TICKER>
//	markets:deribit:option:<ccy>:<expiryISO>:<strike>:<c|p>
//	markets:deribit:future:<ccy>:<expiryISO>
//	markets:deribit:spot:<ccy>:<quote>
//	kalshi:subscriptions
package schema
