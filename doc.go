// Package decisionscraper finds the senior decision-makers of a company
// from its website.
//
// It fetches the root page, follows the links most likely to name people
// (about, team, leadership, contact), reduces each page to its main text
// and asks a language model to extract the owners, executives and founders
// mentioned there. Results from all pages are merged per person and ranked
// by confidence.
//
//	res, err := decisionscraper.ScrapeDecisionMakers(ctx, "https://example.com", apiKey,
//		decisionscraper.WithMaxPages(10),
//		decisionscraper.WithTimeout(2*time.Minute),
//	)
//	if errors.Is(err, decisionscraper.ErrAuthentication) {
//		// the provider rejected the key
//	}
//
// Pages that fail are skipped and listed in ScrapeResult.Errors. Every
// call builds its own HTTP transport and releases it before returning, so
// concurrent calls do not interfere.
package decisionscraper
