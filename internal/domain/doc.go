// Package domain models emergency incidents, responder stations, and the
// selection of the nearest responder.
//
// # Categories
//
// Every incident and station belongs to one of three categories: fire,
// medical, or police. Older front ends and catalog files say "hospital" or
// "ambulance" for medical; [ParseCategory] folds those in. Anything else is
// rejected with [ErrInvalidCategory].
//
// # Station Catalog
//
// The catalog is a static JSON document:
//
//	{
//	  "fire": {
//	    "Al Karama Civil Defence Station": {"lat": 25.2473, "lng": 55.3035},
//	    ...
//	  },
//	  "hospital": { ... },
//	  "police":   { ... }
//	}
//
// [LoadCatalog] keeps stations in file order. Candidates are sent to the
// travel-time provider in that order and the provider answers in the same
// order, so file order is what decides equal-ETA ties.
//
// # Travel Estimates
//
// Providers return free text, as the Google Distance Matrix API does:
//
//	distance: "3.2 km"     passed through untouched
//	duration: "6 mins"     minute count taken from the first digit run
//
// Duration parsing is deliberately narrow. [ParseMinutes] takes the first
// run of ASCII digits and nothing more: "12 mins" is 12, "~8-10 min" is 8,
// "arriving in 3-5 min" is 3. Text without digits ("n/a", "ZERO_RESULTS")
// does not parse, and the estimate is skipped.
//
// # Resolution
//
// [Resolve] scans estimates once, keeping the smallest minute count and
// replacing it only on a strict improvement, so the first of several equal
// ETAs wins. Failure modes, checked in this order:
//
//	ErrInvalidCategory      category not recognized; nothing else inspected
//	ErrNoStationsAvailable  catalog has no stations for the category
//	ErrNoParsableEstimate   no estimate yielded a minute count
//	ErrStationNotInCatalog  provider named a station the catalog lacks
//
// The last one signals a data-consistency problem between the provider
// request and the catalog. It is never resolved by falling back to some other
// station.
package domain
