// Package convert defines the document conversion contract: turning a raw
// uploaded file into an ordered set of per-page artifacts. The pdfcpu
// subpackage implements it for PDF input; mock provides test doubles.
package convert
