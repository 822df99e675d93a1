// Package archive stores full sync pass reports in object storage so they
// outlive the summary rows kept in the database.
package archive
