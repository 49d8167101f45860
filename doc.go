/*
Package clientele executes HTTP operations declared as typed functions.

Declare an operation once — HTTP method, a path template with {name}
placeholders, a parameters struct and a result type — and then call it
like a local function. The engine builds the request, sends it through a
pluggable backend and hydrates the response into the declared type.

Parameters are an ordinary struct whose tags say where each field goes:

	type GetUserParams struct {
		// Substituted into the path template, percent-encoded.
		UserID int `path:"user_id"`

		// Sent as a query parameter. A pointer field is optional:
		// nil is omitted from the query string entirely.
		Verbose *bool `query:"verbose"`

		// Sent as a header.
		RequestID string `header:"X-Request-Id"`
	}

For POST, PUT, PATCH and DELETE, fields with json tags form the JSON
request body, and a single field tagged body:"true" sends its value as
the whole payload instead (struct and map values as JSON, proto.Message
values as binary protobuf, readers and byte slices as is). Fields may
declare literal defaults with a default tag and constraints with
validate tags, checked by github.com/go-playground/validator.

Declare operations against a client, typically in package variables so
that malformed declarations fail at startup:

	var client = clientele.NewClient("https://api.example.com")

	var getUser = clientele.GET[GetUserParams, User](client, "/users/{user_id}", nil)

	user, err := getUser.Invoke(ctx, GetUserParams{UserID: 1})

The declaration is validated eagerly and panics with
*errors.DeclarationError on a malformed operation: an unknown method, a
placeholder without a matching path field, an invalid status map, a
result type that should have been declared streaming or asynchronous.
Nothing malformed ever reaches the network.

The last declaration argument is the handler, the operation's body. It
runs after hydration with the result and the normalized response
injected, and its return value is what the caller receives:

	var getUser = clientele.GET[GetUserParams, User](client, "/users/{user_id}",
		func(ctx context.Context, p GetUserParams, result User, response *clientele.Response) (User, error) {
			result.FetchedAt = time.Now()
			return result, nil
		})

A nil handler returns the hydrated result unchanged.

A status map declares polymorphic, status-code-keyed hydration. Each
declared status owns a type; the types must be assignable to the result
type, which is typically an interface:

	var lookup = clientele.GET[LookupParams, UserOrError](client, "/users/{id}", nil,
		clientele.StatusMap{200: User{}, 404: NotFound{}})

A response with an undeclared status fails with *errors.ProtocolError
carrying the observed status and the declared set. Custom parsing
bypasses hydration entirely:

	clientele.Parser(func(r *clientele.Response) (interface{}, error) { ... })

Streaming operations decode newline-delimited records lazily, one item
at a time, holding the connection open for the duration of iteration:

	var watch = clientele.GETStream[WatchParams, Event](client, "/events")

	st, err := watch.Stream(ctx, WatchParams{})
	if err != nil { ... }
	defer st.Close()
	for st.Next() {
		handle(st.Current())
	}
	if err := st.Err(); err != nil { ... }

Every operation also has an asynchronous driver: InvokeAsync returns a
*Promise, and Chan delivers stream items over a channel. Both run the
exact same binding, sending and hydration logic as the blocking calls.

Per-call overrides are call options: Query replaces the computed query
map wholesale and Header/HeaderMap merge over the client's default
headers:

	getUser.Invoke(ctx, p, clientele.Header("X-Trace", "abc"))
*/
package clientele
