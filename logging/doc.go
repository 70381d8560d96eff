/*
Package logging implements application log instrumentation and Apache
combined access logging extended with the canary routing outcome.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
		log.Errorf("nothing to do")
	}

During initialization, it is possible to redirect the log output from
the default /dev/stderr to another file, to set a common prefix for each
log entry and to switch to the JSON format.

# Access Log

The access log prints HTTP access information in the Apache combined
access log format, followed by the duration in milliseconds, the
requested host, the target build and the resolved organization:

	127.0.0.1 - - [10/Oct/2000:13:55:36 -0700] "GET / HTTP/1.1" 200 2326 "" "curl/8.0" 42 app.example.org next ORG_ABC
*/
package logging
