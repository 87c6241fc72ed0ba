// Package services defines the [Service] interface for the style-transfer backend and implements it over HTTP.
//
// # Backend Interface
//
// [APIService] wraps the backend's REST endpoints with resty:
//
//   - GET  /api/check-user/{email}
//   - POST /api/register, /api/login, /api/update-user, /api/add-transformed-image
//   - POST /api/transfer (multipart: content, style, email, client_id)
//   - GET  /api/gallery/{email}?page=&per_page=
//   - DELETE /api/images/{email}/{filename}
//
// Requests pass through a [rate.Limiter] and, when a token source is configured,
// carry the identity provider's ID token as a bearer token.
//
// # Progress Channel
//
// Transfer progress is pushed over a WebSocket at {progress_url}/{client_id}.
// [WebSocketDialer] opens it with retries and exposes a [ProgressStream] of
// [models.Partial] and [models.Completed] events. The stream ends after the
// first Completed event.
//
// # Error Handling
//
// Non-2xx responses surface as [*HTTPError], which unwraps to [shared.ErrAPIRequest].
// Transport failures wrap [shared.ErrServiceUnavailable]. [IsUnavailable] treats
// both transport failures and 5xx responses as "backend could not serve the call".
package services
