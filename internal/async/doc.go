// Package async provides single-assignment values that are resolved on
// engine worker goroutines and observed by any number of readers.
package async
