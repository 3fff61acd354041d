// Package report renders the summary printed when a crawl stops.
//
// A Summary is built from the crawl result, the output store statistics
// and, when the journal is enabled, the hosts that failed most often.
// SimpleWriter prints it for the terminal, JSONWriter for tools and
// MarkdownWriter for sharing. MultiWriter fans one summary out to several
// writers.
package report
