// Package content turns fetched HTML into compact Markdown for the entity
// extractor.
//
// A Reducer drops boilerplate elements (scripts, styles, navigation, footers,
// forms and similar), converts what remains to Markdown, squeezes whitespace
// and truncates the result to a character budget. Contact links that lived
// only in removed blocks, such as a footer mailto: link, are kept in a
// trailing "Contact details" section so the extractor can still see them.
//
// Reduction is deterministic and never fails. Input that cannot be parsed is
// reduced by stripping every tag.
package content
