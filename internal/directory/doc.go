// Package directory provides goSession.UserDirectory implementations.
//
// [HTTPClient] talks to the user service over JSON/HTTP and retries the
// idempotent user search on transport errors and 5xx answers. [Memory] keeps
// bcrypt-hashed users in process for development and tests.
package directory
