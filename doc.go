/*
Package zbxdns provisions and maintains Zabbix hosts from DNS names.

Host creation always starts with [zbxdns.New],
which takes the name of the target host group and a list of options naming
the Zabbix endpoint, the source of hostnames, and optionally the [Resolver].
[Provisioner.Run] then logs in, looks up the group,
and creates one host per resolvable name, skipping (and reporting) the rest.

The same [ZabbixClient] drives the maintenance workflows
[RenameHosts], [RefreshInterfaceIPs] and [CheckIOWait].
Calls not wrapped by the client can be made with a typed [Method].
*/
package zbxdns
