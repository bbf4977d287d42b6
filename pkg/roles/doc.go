// Package roles defines the canonical user roles and the predicates used for
// access decisions.
//
// Role strings arrive from the backend and are compared case-insensitively
// everywhere. Admin-tier checks use exact membership in a fixed set rather
// than substring matching, so a custom role such as "company_admin_readonly"
// is NOT treated as an admin unless explicitly added to the set.
package roles
