// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package auth issues and checks the bearer tokens of the remote store.

Every device signs in anonymously: the remote store mints a random user ID
and returns an HS256-signed JWT whose subject is that ID. The token carries
iss, sub, jti, iat, nbf and exp claims; validation pins the algorithm to
HS256 and the issuer to Issuer.

Usage:

	jwtManager, err := auth.NewJWTManager(cfg.RemoteStore)
	if err != nil {
	    return err
	}
	token, expiresAt, err := jwtManager.GenerateToken(auth.NewAnonymousUserID())

	mw := auth.NewMiddleware(jwtManager, writeError)
	r.With(mw.Authenticate).Put("/v1/users/{uid}/weeks/{weekKey}", putWeek)

Handlers read the caller with ClaimsFromContext and must compare
Claims.UserID() with the user ID in the path.
*/
package auth
