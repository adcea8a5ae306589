package service

// MaxReasonLen exposes maxReasonLen to the external service_test package.
const MaxReasonLen = maxReasonLen
