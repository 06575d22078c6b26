// Package source loads decks into ir.Document values.
//
// Loaders are the external collaborators of the engine: they turn Markdown,
// HTML, or positioned PDF text runs into an ordered sequence of blocks with
// source ranges. The engine never reads files itself.
//
// # Loaders
//
//   - Markdown (.md, .markdown): goldmark with GFM tables, optional YAML
//     front matter
//   - HTML (.html, .htm): converted to Markdown, then parsed as Markdown;
//     ranges refer to the converted text
//   - PDF text runs (.runs.json): runs produced by an external PDF text
//     extractor, assembled into headings/body by font-size thresholds
//
// Loaders report quality problems as diagnostics instead of failing, so a
// poor extraction is visible rather than silently accepted.
package source
