package constants

// HTTP and realtime paths.
const (
	PathHealthz   = "/healthz"
	PathPing      = "/ping"
	PathCreateJob = "/create_job"
	PathAuthJob   = "/auth_job"
	PathEndJob    = "/end_job"
	PathFullText  = "/api/fulltext"
	PathWS        = "/ws"
	PathEvents    = "/events"
)

// HeaderWriterToken carries the writer token on end/publish requests.
const HeaderWriterToken = "X-Writer-Token"
