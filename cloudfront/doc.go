/*
Package cloudfront adapts the canary routing to the request events of the
CloudFront edge runtimes.

Two runtimes are supported, each with its own shape of header values:

  - CloudFront Functions viewer request events, where every header is a
    single value object: "accept": {"value": "text/html"}. These are
    typically deployed with one origin serving both builds, and the path
    rewriting strategy.
  - Lambda@Edge origin request events, where every header is an array of
    key/value records: "accept": [{"key": "Accept", "value": "text/html"}].
    These can replace the S3 origin, and are typically deployed with the
    origin swapping strategy.

The handlers return the mutated request object, that the runtime forwards
to the origin. Fields of the event that the routing doesn't use are
passed through unchanged.
*/
package cloudfront
