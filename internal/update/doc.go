// Package update runs one SorryDB refresh: the containerized database update
// followed by stage, commit, tag and push of whatever changed.
//
// A run is strictly sequential and aborts at the first unexpected failure.
// Nothing is rolled back: a failed push leaves the local commit and tag in
// place for the next run (or a human) to deal with.
package update
