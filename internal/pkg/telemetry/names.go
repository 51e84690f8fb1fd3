package telemetry

// Span names used for instrumentation.
const (
	SpanTripCreate    = "trip.create"
	SpanTripGet       = "trip.get"
	SpanTripRename    = "trip.rename"
	SpanTripDelete    = "trip.delete"
	SpanTripList      = "trip.list"
	SpanTripItinerary = "trip.itinerary"
	SpanCityLookup    = "city.autocomplete"
)

// Span attribute keys.
const (
	AttrTripID        = "trip.id"
	AttrWaypointCount = "trip.waypoint_count"
	AttrCacheHit      = "cache.hit"
	AttrCityPrefix    = "city.prefix"
)
