/*
Package analysis runs submissions through the pipeline and builds the result
envelope.

Each run walks a small state machine:

	received → extracting → (extracted | unextractable*) → completing →
	(completed* | failed*) → [translating → (translated* | translation_failed*)]

Prompt submissions skip extracting. Files are read from the session store and
normalized by the extractor; opaque files end as unextractable with a fixed
message and status "limited". Translation runs only when the requested language
is not English, and its failure keeps the primary response.

The orchestrator is where every component error becomes an *errs.Error. Errors
that are already classified pass through; anything else gets a generic message.
*/
package analysis
