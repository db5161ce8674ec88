package web

import "html/template"

// pages are rendered with html/template, so user-supplied names are escaped.
var pages = template.Must(template.New("pages").Parse(`
{{define "signup"}}<!DOCTYPE html>
<html>
<head><title>Sign up</title></head>
<body>
  <h1>Sign up</h1>
  <form action="/signup/fast" method="post">
    <input type="text" name="username" placeholder="Username" required>
    <input type="password" name="password" placeholder="Password" required>
    <button type="submit">Sign up (fast)</button>
  </form>
  <form action="/signup/slow" method="post">
    <input type="text" name="username" placeholder="Username" required>
    <input type="password" name="password" placeholder="Password" required>
    <button type="submit">Sign up (slow)</button>
  </form>
  <p><a href="/login">Log in</a></p>
</body>
</html>{{end}}

{{define "login"}}<!DOCTYPE html>
<html>
<head><title>Log in</title></head>
<body>
  <h1>Log in</h1>
  <form action="/login" method="post">
    <input type="text" name="username" placeholder="Username" required>
    <input type="password" name="password" placeholder="Password" required>
    <button type="submit">Log in</button>
  </form>
  <p><a href="/signup">Sign up</a></p>
</body>
</html>{{end}}

{{define "home"}}<!DOCTYPE html>
<html>
<head><title>Welcome</title></head>
<body>
  <p>Welcome to your private page, {{.UserName}}!</p>
  <form action="/logout" method="post">
    <button type="submit">Logout</button>
  </form>
</body>
</html>{{end}}
`))
