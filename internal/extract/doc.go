// Package extract asks a language model for the decision-makers named on a
// page and keeps only records the page supports.
//
// The model receives a system prompt forbidding invented facts and a strict
// JSON Schema. Its output is parsed leniently (JSON repair, code fences,
// several container shapes) and then filtered: junk or business names,
// non-executive titles and bare first names without a title are dropped,
// contact values that fail a syntax check are discarded with a note, and
// each surviving record gets a confidence score.
package extract
