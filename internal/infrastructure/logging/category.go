package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Room            Category = "Room"
	Session         Category = "Session"
	Voting          Category = "Voting"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Room / Session / Voting
	Create     SubCategory = "Create"
	Join       SubCategory = "Join"
	Leave      SubCategory = "Leave"
	Mutation   SubCategory = "Mutation"
	Timer      SubCategory = "Timer"
	Eviction   SubCategory = "Eviction"
	Broadcast  SubCategory = "Broadcast"
	Command    SubCategory = "Command"
	Connection SubCategory = "Connection"
	Publish    SubCategory = "Publish"
	Consume    SubCategory = "Consume"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomCode     ExtraKey = "RoomCode"
	UserName     ExtraKey = "UserName"
	ClientID     ExtraKey = "ClientId"
	EventType    ExtraKey = "EventType"
)
