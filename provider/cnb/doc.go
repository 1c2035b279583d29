// Package cnb provides the Czech National Bank (CNB) exchange rate fixing feeds.
//
// # Feeds
//
// ## Yearly
//
// URL: https://www.cnb.cz/en/financial_markets/foreign_exchange_market/exchange_rate_fixing/year.txt?year=YYYY
//
// Pipe-delimited. The header row lists the quoted lot size and code of every
// currency ("Date|1 AUD|...|100 JPY|..."), data rows hold one fixing day each
// ("DD.MM.YYYY|16,512|..."). The header is repeated if the currency list changes
// during the year.
//
// ## Daily
//
// URL: https://www.cnb.cz/en/financial_markets/foreign_exchange_market/exchange_rate_fixing/daily.txt?date=DD.MM.YYYY
//
// The first line starts with the date the CNB actually has a fixing for, which
// is the nearest business day and not necessarily the requested date. The second
// line is the column header (Country|Currency|Amount|Code|Rate), followed by one
// row per currency.
//
// # Normalization
//
// Rates use a comma as the decimal separator and are quoted per lot (e.g. per
// 100 JPY). Parsed rates are always divided by the lot size, so every rate the
// parsers yield is CZK per single unit. Values that are not numeric are skipped
// and counted, they never invalidate the rest of the feed.
package cnb
