package repository

// MaxClaimRetries is the number of candidates one SQL claim call tries.
const MaxClaimRetries = maxClaimRetries
